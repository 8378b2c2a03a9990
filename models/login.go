package models

// LoginResultCode is what a fetcher reports back from a login attempt.
type LoginResultCode string

const (
	LoginCreated            LoginResultCode = "CREATED"
	LoginResumed            LoginResultCode = "RESUMED"
	LoginNotLogged          LoginResultCode = "NOT_LOGGED"
	LoginCodeRequested      LoginResultCode = "CODE_REQUESTED"
	LoginInvalidCredentials LoginResultCode = "INVALID_CREDENTIALS"
	LoginInvalidCode        LoginResultCode = "INVALID_CODE"
	LoginManual             LoginResultCode = "MANUAL_LOGIN"
	LoginRequired           LoginResultCode = "LOGIN_REQUIRED"
	LoginUnexpectedError    LoginResultCode = "UNEXPECTED_ERROR"
)

// TwoFactor carries a 2FA code for the second leg of a login, together with
// the process id the first leg handed out.
type TwoFactor struct {
	Code      string `json:"code"`
	ProcessID string `json:"process_id,omitempty"`
}

// LoginOptions control session handling. AvoidNewLogin forbids any
// state-changing login call: with no fresh session the result is NOT_LOGGED.
type LoginOptions struct {
	ForceNewSession bool `json:"force_new_session,omitempty"`
	AvoidNewLogin   bool `json:"avoid_new_login,omitempty"`
}

// LoginParams is everything a fetcher needs to establish or resume a
// provider session.
type LoginParams struct {
	Credentials EntityCredentials
	TwoFactor   *TwoFactor
	Options     LoginOptions
	Session     *EntitySession
}

// LoginResult is the outcome of a login call. Session is set on CREATED so
// the orchestrator can persist it for later resumes.
type LoginResult struct {
	Code      LoginResultCode `json:"code"`
	Message   string          `json:"message,omitempty"`
	ProcessID string          `json:"process_id,omitempty"`
	Session   *EntitySession  `json:"-"`
	Details   map[string]any  `json:"details,omitempty"`
}

// LoginState is the per-entity position in the login state machine.
type LoginState string

const (
	StateLoggedOut    LoginState = "LOGGED_OUT"
	StateAwaitingCode LoginState = "AWAITING_CODE"
	StateLoggedIn     LoginState = "LOGGED_IN"
	StateLockedOut    LoginState = "LOCKED_OUT"
)

// NextLoginState applies the state machine transition table to a login
// outcome. It returns the new state; side effects (session storage, UI
// signalling) are the login service's job.
func NextLoginState(current LoginState, code LoginResultCode) LoginState {
	switch code {
	case LoginCreated, LoginResumed:
		return StateLoggedIn
	case LoginCodeRequested:
		return StateAwaitingCode
	case LoginInvalidCode:
		if current == StateAwaitingCode {
			return StateAwaitingCode
		}
		return StateLoggedOut
	case LoginInvalidCredentials, LoginRequired, LoginManual, LoginNotLogged:
		return StateLoggedOut
	default:
		return current
	}
}
