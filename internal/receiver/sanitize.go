// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import "path/filepath"

// destinationFilename derives the local file name the receiver writes to
// from the wire-transmitted file name. Only the base name is trusted: any
// directory components the uploader sent (accidentally or maliciously) are
// discarded rather than rejected, matching the reference implementation's
// basename-only behavior rather than the teacher's reject-on-traversal
// policy, since spec.md's wire format carries no mechanism to report a
// rejected file name back to the uploader mid-transfer.
func destinationFilename(wireName string) string {
	return filepath.Base(wireName) + ".received"
}
