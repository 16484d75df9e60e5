// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

// Package ocsp implements the pieces of a single OCSP (Online Certificate
// Status Protocol) revocation check: building a request for a certificate,
// posting it to a responder and interpreting the signed response.
//
// For details on the protocol, see RFC 6960.
package ocsp
