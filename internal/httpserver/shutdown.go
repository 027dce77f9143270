package httpserver

import "time"

// ShutdownTimeout controls how long to wait for in-flight requests during graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

// DrainTimeout bounds how long background generation jobs may run after the listener stops.
var DrainTimeout = 30 * time.Second
