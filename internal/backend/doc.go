package backend

// Package backend defines the boundary to the native download backend: the
// request port used to start and cancel downloads, the notification bus the
// backend pushes progress on, and the transports that implement them
// (in-process loopback, a child process speaking JSON lines, and AMQP).
