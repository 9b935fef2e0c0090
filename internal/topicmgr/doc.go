// Package topicmgr catalogues the internal event topics published on the
// in-process bus. It is unrelated to the client-chosen relay topics, which are
// opaque strings and never validated.
//
// Framework topics are defined by core services:
//
//	var ConnectionOpened = topicmgr.DefineFramework(topicmgr.TopicConfig{
//		Name:        "relay.connection.opened",
//		Description: "Published when a client connection enters the registry",
//		Pattern:     "relay.connection.opened",
//		Example:     `{"connection_id":"6f1c...","remote_addr":"10.0.0.7:51234"}`,
//	})
//
// Topics are registered with a manager owned by the application container:
//
//	manager := topicmgr.NewManager()
//	if err := manager.Register(ConnectionOpened); err != nil {
//		return err
//	}
//
// Registration is idempotent for the same definition, so packages can register
// their topics every time they are wired.
package topicmgr
