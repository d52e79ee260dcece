package hedge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

//Signer produces the HMAC-SHA256 authentication headers of the venue REST API.
type Signer struct {
	accessKey  []byte
	secretKey  []byte
	passphrase []byte
	now        func() time.Time
}

func NewSigner(accessKey, secretKey, passphrase string) *Signer {
	return &Signer{
		accessKey:  []byte(accessKey),
		secretKey:  []byte(secretKey),
		passphrase: []byte(passphrase),
		now:        time.Now,
	}
}

//Wipe zeroes the credentials.
func (s *Signer) Wipe() {
	for _, b := range [][]byte{s.accessKey, s.secretKey, s.passphrase} {
		for i := range b {
			b[i] = 0
		}
	}
}

//Headers signs timestamp + method + path + query + body.
func (s *Signer) Headers(method, path, query, body string) map[string]string {
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	payload := timestamp + method + path
	if query != "" {
		payload += "?" + query
	}
	payload += body

	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))

	return map[string]string{
		"ACCESS-KEY":        string(s.accessKey),
		"ACCESS-SIGN":       base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		"ACCESS-TIMESTAMP":  timestamp,
		"ACCESS-PASSPHRASE": string(s.passphrase),
		"Content-Type":      "application/json",
		"locale":            "en-US",
	}
}
