package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/dRL/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding.
// Byte fields are base64 encoded, empty byte fields decode to nil.
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// json.Unmarshal keeps fields that are missing in the input, a reused message must be reset
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
