package models

import "testing"

func TestNextLoginState_Transitions(t *testing.T) {
	cases := []struct {
		current  LoginState
		code     LoginResultCode
		expected LoginState
	}{
		{StateLoggedOut, LoginCreated, StateLoggedIn},
		{StateLoggedOut, LoginResumed, StateLoggedIn},
		{StateLockedOut, LoginCreated, StateLoggedIn},
		{StateLoggedOut, LoginCodeRequested, StateAwaitingCode},
		{StateLoggedIn, LoginCodeRequested, StateAwaitingCode},
		{StateAwaitingCode, LoginInvalidCode, StateAwaitingCode},
		{StateLoggedOut, LoginInvalidCode, StateLoggedOut},
		{StateLoggedIn, LoginInvalidCredentials, StateLoggedOut},
		{StateLoggedIn, LoginRequired, StateLoggedOut},
		{StateLoggedIn, LoginManual, StateLoggedOut},
		{StateLoggedIn, LoginNotLogged, StateLoggedOut},
		{StateAwaitingCode, LoginCreated, StateLoggedIn},
		{StateLockedOut, LoginUnexpectedError, StateLockedOut},
		{StateLoggedIn, LoginUnexpectedError, StateLoggedIn},
	}
	for _, tc := range cases {
		got := NextLoginState(tc.current, tc.code)
		if got != tc.expected {
			t.Fatalf("NextLoginState(%s, %s) expected %s, got %s", tc.current, tc.code, tc.expected, got)
		}
	}
}
