package securechannel

import (
	"context"
	"fmt"

	"github.com/davecgh/go-xdr/xdr"

	"github.com/najoast/hellonode/crypt"
	"github.com/najoast/hellonode/identity"
)

const (
	handshakeInfo = "hellonode secure channel handshake"
	transportInfo = "hellonode secure channel transport"
)

type role int

const (
	initiatorRole role = iota
	responderRole
)

func (r role) String() string {
	if r == initiatorRole {
		return "initiator"
	}
	return "responder"
}

// sessionKeys are derived from the ephemeral key agreement. The handshake
// keys protect the identity payloads, the others the channel traffic.
type sessionKeys struct {
	initiatorHandshake   []byte
	responderHandshake   []byte
	initiatorToResponder []byte
	responderToInitiator []byte
}

// handshake holds the state of one side until the channel is established.
//
// The initiator sends its ephemeral key. The responder answers with its own
// ephemeral key and its sealed identity payload. The initiator then sends
// its sealed identity payload. Each payload is signed over the transcript
// hash of both ephemeral keys, so that it binds the identity to this key
// agreement.
type handshake struct {
	role       role
	identities *identity.Identities
	self       identity.Identifier
	trust      *identity.TrustContext
	credential *identity.Credential

	ephemeral *crypt.KeyPair
	hash      []byte
	keys      *sessionKeys
	peer      *identity.Identity
}

func newHandshake(r role, identities *identity.Identities, self identity.Identifier, trust *identity.TrustContext, cred *identity.Credential) (*handshake, error) {
	if !identities.Vault().Has(self) {
		return nil, fmt.Errorf("%w: %s", identity.ErrNoPrivateKey, self)
	}
	kp, err := crypt.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &handshake{
		role:       r,
		identities: identities,
		self:       self,
		trust:      trust,
		credential: cred,
		ephemeral:  kp,
	}, nil
}

// hello is the initiator's first frame data.
func (h *handshake) hello() []byte {
	return h.ephemeral.Public
}

// respond runs on the responder when the initiator's ephemeral key arrives
// and returns the response frame data.
func (h *handshake) respond(initiatorEphemeral []byte) ([]byte, error) {
	if err := h.agree(initiatorEphemeral, initiatorEphemeral, h.ephemeral.Public); err != nil {
		return nil, err
	}
	sealed, err := h.sealIdentity(h.keys.responderHandshake)
	if err != nil {
		return nil, err
	}
	data, err := xdr.Marshal(response{Ephemeral: h.ephemeral.Public, Sealed: sealed})
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return data, nil
}

// finish runs on the initiator when the response arrives. It authenticates
// the responder and returns the data of the finish frame.
func (h *handshake) finish(ctx context.Context, data []byte) ([]byte, error) {
	var r response
	if rest, err := xdr.Unmarshal(data, &r); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: malformed response", ErrInvalidFrame)
	}
	if err := h.agree(r.Ephemeral, h.ephemeral.Public, r.Ephemeral); err != nil {
		return nil, err
	}
	peer, err := h.openIdentity(ctx, h.keys.responderHandshake, responderRole, r.Sealed)
	if err != nil {
		return nil, err
	}
	h.peer = peer
	return h.sealIdentity(h.keys.initiatorHandshake)
}

// accept runs on the responder when the finish frame arrives.
func (h *handshake) accept(ctx context.Context, sealed []byte) error {
	peer, err := h.openIdentity(ctx, h.keys.initiatorHandshake, initiatorRole, sealed)
	if err != nil {
		return err
	}
	h.peer = peer
	return nil
}

func (h *handshake) agree(peerEphemeral, initiatorEphemeral, responderEphemeral []byte) error {
	secret, err := h.ephemeral.SharedSecret(peerEphemeral)
	if err != nil {
		return err
	}
	h.hash = crypt.TranscriptHash(initiatorEphemeral, responderEphemeral)

	hs, err := crypt.DeriveKeys(secret, h.hash, handshakeInfo, 2)
	if err != nil {
		return err
	}
	tr, err := crypt.DeriveKeys(secret, h.hash, transportInfo, 2)
	if err != nil {
		return err
	}
	h.keys = &sessionKeys{
		initiatorHandshake:   hs[0],
		responderHandshake:   hs[1],
		initiatorToResponder: tr[0],
		responderToInitiator: tr[1],
	}
	return nil
}

func (h *handshake) transcript(signer role) []byte {
	out := make([]byte, 0, len(signer.String())+len(h.hash))
	out = append(out, signer.String()...)
	return append(out, h.hash...)
}

func (h *handshake) sealIdentity(key []byte) ([]byte, error) {
	self, err := h.identities.Get(h.self)
	if err != nil {
		return nil, err
	}
	sig, err := h.identities.Sign(h.self, h.transcript(h.role))
	if err != nil {
		return nil, err
	}

	p := identityPayload{ChangeHistory: self.ChangeHistory(), Signature: sig}
	if h.credential != nil {
		if p.Credential, err = h.credential.Encode(); err != nil {
			return nil, err
		}
	}
	plain, err := xdr.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity payload: %w", err)
	}

	sealer, err := crypt.NewSealer(key)
	if err != nil {
		return nil, err
	}
	_, sealed, err := sealer.Seal(plain, h.hash)
	return sealed, err
}

// openIdentity decrypts and checks the peer's identity payload. A presented
// credential must verify when the trust context has an authority.
func (h *handshake) openIdentity(ctx context.Context, key []byte, signer role, sealed []byte) (*identity.Identity, error) {
	opener, err := crypt.NewOpener(key)
	if err != nil {
		return nil, err
	}
	plain, err := opener.Open(0, sealed, h.hash)
	if err != nil {
		return nil, err
	}

	var p identityPayload
	if rest, err := xdr.Unmarshal(plain, &p); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: malformed identity payload", ErrInvalidFrame)
	}

	peer, err := identity.ParseIdentity(p.ChangeHistory)
	if err != nil {
		return nil, err
	}
	if !peer.Verify(h.transcript(signer), p.Signature) {
		return nil, fmt.Errorf("%w: %s did not sign the handshake", identity.ErrInvalidSignature, peer.Identifier())
	}
	if _, err := h.identities.ImportIdentity(p.ChangeHistory); err != nil {
		return nil, err
	}

	if len(p.Credential) > 0 && h.trust != nil && h.trust.Authority() != nil {
		cred, err := identity.DecodeCredential(p.Credential)
		if err != nil {
			return nil, err
		}
		if err := h.trust.Authority().VerifyAndStore(ctx, peer.Identifier(), cred); err != nil {
			return nil, err
		}
	}
	return peer, nil
}
