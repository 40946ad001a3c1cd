package message

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/c360/semstreams-fix/errors"
)

// Content types understood by the codec.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// HeaderContentType is the NATS header carrying the batch encoding.
const HeaderContentType = "Content-Type"

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	cborEnc, err = encOptions.EncMode()
	if err != nil {
		panic("message: CBOR encoder initialization failed: " + err.Error())
	}

	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("message: CBOR decoder initialization failed: " + err.Error())
	}
}

func isCBOR(contentType string) bool {
	return strings.EqualFold(strings.TrimSpace(strings.Split(contentType, ";")[0]), ContentTypeCBOR)
}

// Encode serializes a batch. Anything other than CBOR is encoded as JSON.
func Encode(b Batch, contentType string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if isCBOR(contentType) {
		data, err = cborEnc.Marshal(b)
	} else {
		data, err = json.Marshal(b)
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "message", "Encode", "batch encoding")
	}
	return data, nil
}

// Decode parses a batch encoded with the given content type.
func Decode(data []byte, contentType string) (Batch, error) {
	var b Batch
	if len(data) == 0 {
		return b, errors.WrapInvalid(errors.ErrInvalidData, "message", "Decode", "empty payload")
	}

	var err error
	if isCBOR(contentType) {
		err = cborDec.Unmarshal(data, &b)
	} else {
		err = json.Unmarshal(data, &b)
	}
	if err != nil {
		return Batch{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "message", "Decode", "batch decoding")
	}
	return b, nil
}
