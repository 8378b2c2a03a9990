package models

import "testing"

func TestFetchCodeForLogin(t *testing.T) {
	cases := []struct {
		code     LoginResultCode
		expected FetchResultCode
		aborts   bool
	}{
		{LoginCreated, "", false},
		{LoginResumed, "", false},
		{LoginNotLogged, FetchNotLogged, true},
		{LoginCodeRequested, FetchCodeRequested, true},
		{LoginInvalidCredentials, FetchInvalidCredentials, true},
		{LoginInvalidCode, FetchInvalidCode, true},
		{LoginManual, FetchManualLogin, true},
		{LoginRequired, FetchLoginRequired, true},
		{LoginUnexpectedError, FetchRemoteFailed, true},
		{LoginResultCode("SOMETHING_NEW"), FetchRemoteFailed, true},
	}
	for _, tc := range cases {
		got, aborts := FetchCodeForLogin(tc.code)
		if aborts != tc.aborts {
			t.Fatalf("FetchCodeForLogin(%s) aborts = %v, expected %v", tc.code, aborts, tc.aborts)
		}
		if got != tc.expected {
			t.Fatalf("FetchCodeForLogin(%s) expected %s, got %s", tc.code, tc.expected, got)
		}
	}
}
