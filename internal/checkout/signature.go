package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook signatures follow the provider scheme: the header carries a unix
// timestamp and one or more v1 HMAC-SHA256 signatures over "<t>.<payload>".
const signatureTolerance = 5 * time.Minute

func computeSignature(secret string, t int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", t)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks the header against the payload. now is injected for
// tolerance tests.
func verifySignature(payload []byte, sigHeader, secret string, now time.Time) error {
	var ts int64 = -1
	var sigs []string
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts < 0 || len(sigs) == 0 {
		return ErrInvalidSignature
	}
	if d := now.Sub(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return ErrInvalidSignature
	}

	expected := computeSignature(secret, ts, payload)
	for _, s := range sigs {
		if hmac.Equal([]byte(s), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}
