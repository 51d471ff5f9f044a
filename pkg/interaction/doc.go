// Package interaction implements the request/response layer of the model
// service.
//
// A request names one table by scheme and path; the response carries the
// table or a status with a message.
//
// # Server Usage
//
// The Server dispatches requests to a TableProvider:
//
//	server := interaction.NewServer(provider)
//	response := server.HandleRequest(ctx, request)
//
// Providers wrap ErrTableNotFound or ErrInvalidPath to pick the status.
//
// # Client Usage
//
// The Client is transport agnostic. It sends frames through a RequestSender
// and expects the owner of the connection to pass every incoming frame to
// Dispatch:
//
//	client := interaction.NewClient(conn)
//	go func() {
//	    for {
//	        data, err := conn.Receive(0)
//	        if err != nil {
//	            client.Close()
//	            return
//	        }
//	        client.Dispatch(data)
//	    }
//	}()
//
//	table, err := client.Get(ctx, "pva", "BMAD:SYS0:1:CU_HXR:LIVE:RMAT", nil)
package interaction
