package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

var hexAddress = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")

//ValidateAddress accepts a hex address. Mixed case input must carry a valid EIP-55 checksum.
func ValidateAddress(address string) error {
	if !hexAddress.MatchString(address) {
		return errors.Errorf("given address '%s' is not a valid Ethereum address", address)
	}
	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	if ToChecksumAddress(address) != address {
		return errors.Errorf("given address '%s' has an invalid checksum", address)
	}
	return nil
}

//ToChecksumAddress returns the EIP-55 form of a valid hex address.
func ToChecksumAddress(address string) string {
	lower := strings.ToLower(strings.TrimPrefix(address, "0x"))

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(lower))
	addressHash := fmt.Sprintf("%x", hasher.Sum(nil))

	checksumAddress := []byte("0x")
	for i := 0; i < len(lower); i++ {
		//a hash nibble above 7 uppercases the letter at the same position
		if addressHash[i] > '7' {
			checksumAddress = append(checksumAddress, strings.ToUpper(string(lower[i]))...)
		} else {
			checksumAddress = append(checksumAddress, lower[i])
		}
	}
	return string(checksumAddress)
}
