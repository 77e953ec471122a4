/*
 * Copyright 2020 Guardtime, Inc.
 *
 * This file is part of the Guardtime client SDK.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *     http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES, CONDITIONS, OR OTHER LICENSES OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 * "Guardtime" and "KSI" are trademarks or registered trademarks of
 * Guardtime, Inc., and no license to trademarks is granted; Guardtime
 * reserves and retains all trademark rights.
 */

package errors

// ErrorCode represent the error code value.
type ErrorCode uint16

const (
	// CmpNoError represent a successful result.
	CmpNoError = ErrorCode(0)

	/*
		Syntax errors
	*/

	// CmpInvalidArgumentError is in case of invalid function input argument (eg. nil pointer).
	CmpInvalidArgumentError = ErrorCode(0x100)
	// CmpInvalidFormatError is set in case the data could not be parsed (eg. truncated or malformed PKI message).
	CmpInvalidFormatError = ErrorCode(0x101)
	// CmpInvalidStateError is set in case the objects used are in an invalid state (eg. missing mandatory member value).
	CmpInvalidStateError = ErrorCode(0x10a)
	// CmpUnknownAlgorithm is set in case the algorithm identifier is invalid or unknown to the API.
	CmpUnknownAlgorithm = ErrorCode(0x10b)

	/*
		System errors
	*/

	// CmpNetworkError is set in case a network (transport) error occurred.
	CmpNetworkError = ErrorCode(0x200)
	// CmpHttpError is set in case an HTTP error has been received.
	CmpHttpError = ErrorCode(0x201)
	// CmpIoError is set in case IO error occurred.
	CmpIoError = ErrorCode(0x202)
	// CmpCryptoFailure is set in case cryptographic operation could not be performed. Likely causes are unsupported
	// cryptographic algorithms, invalid keys and lack of resources.
	CmpCryptoFailure = ErrorCode(0x20d)
	// CmpNoIdleSigner is set in case no signer became available within the borrow timeout. The operation can be
	// retried.
	CmpNoIdleSigner = ErrorCode(0x20f)
	// CmpTransactionIDMismatch is set in case the transaction ID of the response does not match the one of the request.
	CmpTransactionIDMismatch = ErrorCode(0x210)
	// CmpNonceMismatch is set in case the recipient nonce of the response does not match the sender nonce of the
	// request.
	CmpNonceMismatch = ErrorCode(0x211)
	// CmpResponseNotProtected is set in case a signed request has been answered with an unprotected non-error response.
	CmpResponseNotProtected = ErrorCode(0x212)
	// CmpExternalError is set in case external error from 3rd party API (eg std library) is returned and wrapped
	// automatically inside CmpError.
	CmpExternalError = ErrorCode(0x214)
	// CmpUnexpectedBody is set in case the PKI message body is of a different type than expected.
	CmpUnexpectedBody = ErrorCode(0x215)
	// CmpActionMismatch is set in case the vendor action code of the response differs from the requested one.
	CmpActionMismatch = ErrorCode(0x216)

	/*
		CA status errors.
	*/

	// CmpPkiStatusError is set in case the CA has answered with an error message or the response failed the message
	// check. See (CmpError).PkiStatus() for details.
	CmpPkiStatusError = ErrorCode(0x400)

	// CmpNotImplemented indicates an invalid API state.
	CmpNotImplemented = ErrorCode(0xffff)
)

var errStrings = map[ErrorCode]string{
	CmpNoError: "No Error",

	CmpInvalidArgumentError: "Invalid Argument",
	CmpInvalidFormatError:   "Invalid Format",
	CmpInvalidStateError:    "Invalid State",
	CmpUnknownAlgorithm:     "Unknown Algorithm",

	CmpNetworkError:          "Network Error",
	CmpHttpError:             "HTTP error",
	CmpIoError:               "IO Error",
	CmpCryptoFailure:         "Cryptographic failure",
	CmpNoIdleSigner:          "No idle signer available",
	CmpTransactionIDMismatch: "Transaction ID mismatch",
	CmpNonceMismatch:         "Recipient nonce mismatch",
	CmpResponseNotProtected:  "Response is not protected",
	CmpExternalError:         "Common external error from 3rd party API",
	CmpUnexpectedBody:        "Unexpected PKI message body",
	CmpActionMismatch:        "Vendor action mismatch",

	CmpPkiStatusError: "The CA returned an error status",

	CmpNotImplemented: "Not Implemented",
}

func (c ErrorCode) String() string {
	return errStrings[c]
}

// IsCorrelation reports whether the code indicates that the response belongs to a different exchange.
func (c ErrorCode) IsCorrelation() bool {
	return c == CmpTransactionIDMismatch || c == CmpNonceMismatch
}

// IsTransport reports whether the code indicates an I/O failure of the transport.
func (c ErrorCode) IsTransport() bool {
	return c == CmpNetworkError || c == CmpHttpError
}
