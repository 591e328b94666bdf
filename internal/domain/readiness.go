package domain

// Readiness is the lifecycle state of the automated browser session.
type Readiness string

const (
	ReadinessNotStarted     Readiness = "not_started"
	ReadinessAuthenticating Readiness = "authenticating"
	ReadinessReady          Readiness = "ready"
	ReadinessStopped        Readiness = "stopped"
)
