// Package socketio carries scheduler sessions over Socket.IO.
//
// The scheduler side mounts Server.Handler on its HTTP mux (conventionally at
// /socket.io/) and accepts one channel.Channel per connected worker. Workers
// connect with Dial. Every protocol message travels as a JSON string in a
// single Socket.IO event, so both sides share the protocol package codec.
package socketio

// Event is the Socket.IO event name carrying protocol messages.
const Event = "blockgrid"
