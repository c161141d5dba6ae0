// Package webhook verifies inbound webhook signatures from the
// telephony provider. VerifyTwilioSignature implements Twilio's
// actual X-Twilio-Signature scheme: HMAC-SHA1 over the full request
// URL followed by each sorted POST parameter's key and value
// concatenated directly (no '=' or '&' separators), base64-encoded.
// This differs from the teacher's Exotel scheme (HMAC-SHA256 over
// "key=value&..." pairs, hex-encoded) - a different provider, a
// different signing contract - grounded on the same shape
// (hmac.Equal constant-time compare, skip when secret unset).
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
)

// VerifyTwilioSignature checks the X-Twilio-Signature header against
// the request URL and form values. If secret is empty, verification
// is skipped (development/testing, matching the Exotel helper).
func VerifyTwilioSignature(secret string, requestURL string, formValues url.Values, signature string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return fmt.Errorf("signature header missing")
	}

	var keys []string
	for k := range formValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := requestURL
	for _, k := range keys {
		for _, v := range formValues[k] {
			data += k + v
		}
	}

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(data))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}
