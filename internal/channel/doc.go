// Package channel defines the bidirectional, message-oriented connection
// between the scheduler and one worker session.
//
// # Why Channel Exists
//
// The scheduler core never deals with sockets. It sees every worker as a
// Channel: an ordered stream of protocol messages in both directions that can
// be closed from either side. Transports (in-process pipes for local workers,
// Socket.IO for remote ones) only have to satisfy this contract.
//
// # Contract
//
//   - Send and Recv may be called concurrently with each other, and Send may
//     be called from several goroutines.
//   - Messages arrive in the order they were sent.
//   - After Close, or after the peer closes, Send and Recv return ErrClosed.
//     Messages already delivered to the receiving side are still returned
//     by Recv before ErrClosed.
//   - Both methods honour context cancellation.
package channel
