// Package service wires the model packages into runnable pieces.
//
// # Session
//
// Open dials a model service, starts the receive loop that feeds responses
// back to the interaction client, and builds a model.Model on top of it:
//
//	cfg := service.DefaultClientConfig()
//	cfg.Address = "model-svc:5075"
//	cfg.Key = model.Key{ModelName: "CU_HXR"}
//
//	sess, err := service.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	r, err := sess.Model().TransferMatrix(ctx, "QUAD:IN20:361", "BPMS:LTU1:250", model.RmatOptions{})
//
// # TableServer
//
// TableServer answers table requests from fixture files. It serves every
// model in the fixtures for any source and for both the LIVE and DESIGN
// modes, and counts requests per path so tests can check caching behaviour.
package service
