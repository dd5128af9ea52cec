// Package einfd implements the child side of einhorn socket activation.
//
// A supervisor such as einhorn binds listening sockets before it starts a
// worker, and tells the worker about them through the environment: the
// variable EINHORN_FD_0 holds the number of the first inherited descriptor,
// EINHORN_FD_1 the second, and so on. Because the supervisor keeps those
// sockets open across worker restarts, a worker that adopts the inherited
// socket instead of binding its own can be replaced without dropping
// connections waiting in the listen backlog.
//
// A Resolver inspects the environment exactly once. If no descriptor was
// passed, Resolve returns ErrUnsupervised and the caller may bind a fallback
// address with Fallback. If a descriptor was passed but cannot be used, an
// *AdoptionError is returned and the caller must not fall back, since that
// would leave two processes serving what the supervisor believes is a single
// activated slot.
//
//	r := einfd.New(einfd.WithLogger(logger))
//	act, err := r.Listen(ctx)
//	if err != nil {
//		return err
//	}
//	defer act.Listener.Close()
//	go http.Serve(act.Listener, handler)
//	_ = r.Ack(ctx)
//
// Once the worker is serving, Ack tells the supervisor it is up so that
// older workers can be retired.
package einfd
