// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package chipconfig

import (
	"github.com/chipmigrate/chipmigrate/internal/opcert"
)

// CheckStatus reports the outcome of one certificate check within a
// chain verification.
type CheckStatus int

const (
	// CheckSkipped means the check did not run, either because an
	// earlier check failed or because the certificate is absent and
	// optional.
	CheckSkipped CheckStatus = iota
	CheckPassed
	CheckFailed
)

// String is used in CLI output.
func (s CheckStatus) String() string {
	switch s {
	case CheckPassed:
		return "passed"
	case CheckFailed:
		return "failed"
	}
	return "skipped"
}

// ChainVerification is the structured result of verifying a fabric's
// RCAC→ICAC→NOC trust chain. Error carries the human-readable reason
// when Valid is false; verification never returns a Go error or
// panics.
type ChainVerification struct {
	Valid bool
	RCAC  CheckStatus
	ICAC  CheckStatus
	NOC   CheckStatus
	Error string
}

// VerifyChain validates the certificate chain of the given fabric.
// The checks run strictly in sequence (RCAC decode, RCAC self
// signature, NOC decode, ICAC against RCAC when an ICAC is present,
// NOC against the chain) and stop at the first failure.
func (s *Store) VerifyChain(index uint8) ChainVerification {
	var result ChainVerification

	rcacRaw, ok := s.RCAC(index)
	if !ok {
		result.Error = "RCAC not found or invalid"
		return result
	}
	rcac, err := opcert.Decode(rcacRaw)
	if err != nil {
		logger.Debugf("fabric %d RCAC does not decode: %v", index, err)
		result.Error = "RCAC not found or invalid"
		return result
	}

	if err := rcac.CheckSelfSigned(); err != nil {
		result.RCAC = CheckFailed
		result.Error = "RCAC verification failed: " + err.Error()
		return result
	}
	result.RCAC = CheckPassed

	nocRaw, ok := s.NOC(index)
	if !ok {
		result.Error = "NOC not found or invalid"
		return result
	}
	noc, err := opcert.Decode(nocRaw)
	if err != nil {
		logger.Debugf("fabric %d NOC does not decode: %v", index, err)
		result.Error = "NOC not found or invalid"
		return result
	}

	issuer := rcac
	if icacRaw, ok := s.ICAC(index); ok {
		icac, err := opcert.Decode(icacRaw)
		if err == nil {
			err = icac.CheckSignatureFrom(rcac)
		}
		if err != nil {
			result.ICAC = CheckFailed
			result.Error = "ICAC verification failed: " + err.Error()
			return result
		}
		result.ICAC = CheckPassed
		issuer = icac
	}

	if err := noc.CheckSignatureFrom(issuer); err != nil {
		result.NOC = CheckFailed
		result.Error = "NOC verification failed: " + err.Error()
		return result
	}
	result.NOC = CheckPassed
	result.Valid = true
	return result
}
