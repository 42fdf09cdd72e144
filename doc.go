// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge lets a client create objects on a remote host process,
// call their methods, read and write their properties and index into them.
// Objects never leave the server; clients hold integer ids that stand in
// for them until released.
//
// # Transport Selection
//
// tcp is the default transport: request and reply frames alternate on one
// connection, exactly as in the wire protocol. The grpc transport carries
// the same frames inside unary calls.
//
//	client, err := bridge.Dial(ctx, "127.0.0.1:56789")
//	client, err := bridge.Dial(ctx, addr, bridge.WithTransport(bridge.TransportGRPC))
//
// # Usage
//
// Server usage:
//
//	reg := objectmodel.NewRegistry()
//	reg.MustRegister(objectmodel.NewClass("Widget", (*Widget)(nil)).Constructor(NewWidget))
//
//	server, err := bridge.Listen(":56789", reg)
//	if errors.Is(err, bridge.ErrAlreadyRunning) {
//	    return nil // someone else owns the port
//	}
//	server.Serve(ctx)
//
// Client usage:
//
//	w, err := client.Create(ctx, "Widget", 42, "red")
//	color, err := client.GetProperty(ctx, w, "Color")
//	err = client.Release(ctx, w)
//
// Failures raised by the object model come back as *RemoteError and leave
// the connection usable. Connection failures are *TransportError.
//
// # Architecture
//
//   - client.go: ObjectModel, Client and Server interfaces, options
//   - wire/: message codec
//   - proxy/: object id table
//   - handler.go: request dispatch shared by all transports
//   - stub.go: Client implementation
//   - tcp.go, grpc.go: transports
//   - admin.go, json.go: JSON-RPC admin API and client
package bridge
