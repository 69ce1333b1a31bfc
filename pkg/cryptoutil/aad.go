package cryptoutil

import "github.com/google/uuid"

// aadLen is the fixed size of the additional authenticated data: two
// 128-bit UUIDs concatenated.
const aadLen = 32

// AAD builds the deterministic additional authenticated data that binds a
// ciphertext to the (agent, credential) pair it belongs to. A blob
// encrypted for one pair will not authenticate for any other.
func AAD(agentID, credentialID uuid.UUID) []byte {
	aad := make([]byte, 0, aadLen)
	aad = append(aad, agentID[:]...)
	aad = append(aad, credentialID[:]...)
	return aad
}

// VerifyAAD reports whether aad was generated from the given pair.
func VerifyAAD(aad []byte, agentID, credentialID uuid.UUID) bool {
	if len(aad) != aadLen {
		return false
	}
	expected := AAD(agentID, credentialID)
	for i := range expected {
		if aad[i] != expected[i] {
			return false
		}
	}
	return true
}
