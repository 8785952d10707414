package itemcode

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Keyed so that item codes can't be recomputed outside the server.
var macKey = []byte{78, 85, 64, 95, 7, 12, 49, 95, 44, 9}

const alphanum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// HashShortIdentity returns a 32 character hex digest (keyed BLAKE2b-128)
// of the input. Used for item codes, version strings and the maintenance
// lock checksum.
func HashShortIdentity(val string) string {
	h, err := blake2b.New(16, macKey)
	if err != nil {
		panic(fmt.Sprintf("blake2b init: %v", err))
	}
	h.Write([]byte(val))
	return hex.EncodeToString(h.Sum(nil))
}

// MakeItemCode derives the stable identity of an item from its definition,
// quality and material. Price never feeds into it.
func MakeItemCode(thingDef string, quality int, stuff string) string {
	data := thingDef
	if quality > 0 {
		data += strconv.Itoa(quality)
	}
	if stuff != "" {
		data += stuff
	}
	return HashShortIdentity(data)
}

// MakeVersion hashes the item code together with its base value, so the
// version changes whenever the reference price does.
func MakeVersion(itemCode string, baseValue decimal.Decimal) string {
	return HashShortIdentity(itemCode + baseValue.StringFixed(2))
}

// RandomAlphanum generates a random alphanumeric string, used as the
// per-promise signing secret.
func RandomAlphanum(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("itemcode: read random: %v", err))
	}
	for i, b := range buf {
		buf[i] = alphanum[int(b)%len(alphanum)]
	}
	return string(buf)
}
