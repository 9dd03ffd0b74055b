/*
Package authsdk provides a client SDK and the wire types of the fleetdesk
gateway.

# Client vs Session

  - Client: public endpoints (sign-up, sign-in grants, email links,
    invitation acceptance, health)
  - Session: endpoints that need a signed-in caller (user, MFA,
    organizations, access checks, navigation)

Password sign-in:

	client := authsdk.NewClient("https://fleet.example.com")

	session, err := client.SignInWithPassword(ctx, email, password)
	var mfaErr *authsdk.MFARequiredError
	if errors.As(err, &mfaErr) {
		session, err = client.ChallengeMFA(ctx, mfaErr, "totp", otpCode)
	}

Checking a route for the signed-in role:

	res, err := session.CheckAccess(ctx, "/home/management")
	if err == nil && !res.Allowed {
		redirect(res.Redirect)
	}

# Errors

Non-2xx responses are returned as *APIError carrying the GoTrue error code
(otp_expired, bad_code_verifier, invalid_credentials, ...), or as
*MFARequiredError for a sign-in that needs a second factor.

The request and response types double as the gateway's Swagger models.
*/
package authsdk
