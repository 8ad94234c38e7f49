package app

import (
	"github.com/specialistvlad/blockgrid/internal/registry"
	"github.com/specialistvlad/blockgrid/modules/exec"
	"github.com/specialistvlad/blockgrid/modules/http_request"
	"github.com/specialistvlad/blockgrid/modules/print"
	"github.com/specialistvlad/blockgrid/modules/s3"
)

// coreModules is the definitive list of all modules that are compiled into
// the blockgrid binary.
var coreModules = []registry.Module{
	&print.Module{},
	&exec.Module{},
	&http_request.Module{},
	&s3.Module{},
}
