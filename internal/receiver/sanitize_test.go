// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import "testing"

func TestDestinationFilename_PlainName(t *testing.T) {
	if got, want := destinationFilename("report.csv"), "report.csv.received"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDestinationFilename_StripsDirectoryTraversal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"../../etc/passwd", "passwd.received"},
		{"/etc/shadow", "shadow.received"},
		{"a/b/c/d.bin", "d.bin.received"},
		{"..", "...received"},
	}
	for _, c := range cases {
		if got := destinationFilename(c.in); got != c.want {
			t.Errorf("destinationFilename(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}
