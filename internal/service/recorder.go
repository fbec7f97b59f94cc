package service

import "github.com/rkamal/authcore/internal/auth"

// Recorder receives auth-domain events for metrics. The interface lives
// here (not in the metrics package) so the service layer stays free of
// Prometheus types; internal/metrics provides the real implementation.
type Recorder interface {
	UserRegistered()
	LoginSucceeded()
	LoginFailed()
	OAuthLogin(provider string)
	TokensIssued()
	TokenVerified(status auth.VerifyStatus)
}

// NopRecorder discards every event. The default when no collector is
// wired, and handy in tests.
type NopRecorder struct{}

func (NopRecorder) UserRegistered()                 {}
func (NopRecorder) LoginSucceeded()                 {}
func (NopRecorder) LoginFailed()                    {}
func (NopRecorder) OAuthLogin(string)               {}
func (NopRecorder) TokensIssued()                   {}
func (NopRecorder) TokenVerified(auth.VerifyStatus) {}
