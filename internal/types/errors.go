package types

import "errors"

// Failure kinds. Every rejected operation returns one of these (possibly
// wrapped with context) and leaves state unchanged.
var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrDuplicateResource      = errors.New("duplicate resource")
	ErrProposalNotFound       = errors.New("proposal not found")
	ErrProposalExecuted       = errors.New("proposal executed")
	ErrAlreadyExecuted        = errors.New("already executed")
	ErrInvalidSuggestionIndex = errors.New("invalid suggestion index")
	ErrResourceNotApproved    = errors.New("resource not approved")
	ErrAlreadyOwned           = errors.New("already owned")
	ErrOutOfRange             = errors.New("index out of range")
	ErrResourceNotFound       = errors.New("resource not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrQuorumNotReached       = errors.New("quorum not reached")
	ErrDebateOpen             = errors.New("debating period not over")
	ErrBadNonce               = errors.New("bad nonce")
	ErrUnknownAsset           = errors.New("unknown asset")
)

// ABCI result codes. 0-3 are transport level, the rest map one to one onto
// the failure kinds above.
const (
	CodeTypeOK            uint32 = 0
	CodeTypeEncodingError uint32 = 1
	CodeTypeAuthError     uint32 = 2
	CodeTypeInvalidTx     uint32 = 3

	CodeInsufficientBalance    uint32 = 10
	CodeDuplicateResource      uint32 = 11
	CodeProposalNotFound       uint32 = 12
	CodeProposalExecuted       uint32 = 13
	CodeAlreadyExecuted        uint32 = 14
	CodeInvalidSuggestionIndex uint32 = 15
	CodeResourceNotApproved    uint32 = 16
	CodeAlreadyOwned           uint32 = 17
	CodeOutOfRange             uint32 = 18
	CodeResourceNotFound       uint32 = 19
	CodeInvalidAmount          uint32 = 20
	CodeQuorumNotReached       uint32 = 21
	CodeDebateOpen             uint32 = 22
	CodeBadNonce               uint32 = 23
	CodeUnknownAsset           uint32 = 24
)

var codes = []struct {
	err  error
	code uint32
}{
	{ErrUnauthorized, CodeTypeAuthError},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrDuplicateResource, CodeDuplicateResource},
	{ErrProposalNotFound, CodeProposalNotFound},
	{ErrProposalExecuted, CodeProposalExecuted},
	{ErrAlreadyExecuted, CodeAlreadyExecuted},
	{ErrInvalidSuggestionIndex, CodeInvalidSuggestionIndex},
	{ErrResourceNotApproved, CodeResourceNotApproved},
	{ErrAlreadyOwned, CodeAlreadyOwned},
	{ErrOutOfRange, CodeOutOfRange},
	{ErrResourceNotFound, CodeResourceNotFound},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrQuorumNotReached, CodeQuorumNotReached},
	{ErrDebateOpen, CodeDebateOpen},
	{ErrBadNonce, CodeBadNonce},
	{ErrUnknownAsset, CodeUnknownAsset},
}

// CodeOf returns the result code for err. Unknown errors map to
// CodeTypeInvalidTx.
func CodeOf(err error) uint32 {
	if err == nil {
		return CodeTypeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeTypeInvalidTx
}

// ErrorOf is the inverse of CodeOf for domain codes. It returns nil for
// CodeTypeOK and for codes without a sentinel.
func ErrorOf(code uint32) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
