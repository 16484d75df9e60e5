// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Copyright (c) 2024 Matthew Penner

// Package wwdrcheck checks whether certificates issued under Apple's WWDR
// intermediate authority have been revoked, by querying Apple's OCSP
// responder.
//
// Certificates can be checked from PEM or DER files, or straight from a
// password protected PKCS#12 archive:
//
//	checker, err := wwdrcheck.New(wwdrcheck.Options{})
//	if err != nil {
//		return err
//	}
//	v := checker.CheckP12(ctx, "developer.p12", password, "AppleWWDRCAG3.pem")
//	if !v.Success {
//		return v.Err()
//	}
//	if v.IsRevoked {
//		fmt.Println("certificate revoked at", v.RevokeTime)
//	}
package wwdrcheck
