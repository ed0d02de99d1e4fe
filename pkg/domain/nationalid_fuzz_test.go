package domain

import "testing"

// FuzzMaskNationalID checks the mask never panics, stays within the masked
// length, is idempotent, and that validation agrees on raw and masked forms.
func FuzzMaskNationalID(f *testing.F) {
	f.Add("")
	f.Add("52998224725")
	f.Add("529.982.247-25")
	f.Add("00000000000")
	f.Add("'; DROP TABLE alunos;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("１２３４５６７８９０１")

	f.Fuzz(func(t *testing.T, input string) {
		masked := MaskNationalID(input)

		if len(masked) > maskedNationalIDLength {
			t.Errorf("masked value too long: %q", masked)
		}
		if again := MaskNationalID(masked); again != masked {
			t.Errorf("mask not idempotent: %q -> %q", masked, again)
		}
		if ValidNationalID(masked) != ValidNationalID(NationalIDDigits(masked)) {
			t.Errorf("validation differs between masked and raw forms of %q", input)
		}

		check := CheckNationalID(masked)
		if check.Valid && check.Error != "" {
			t.Errorf("check is both valid and errored for %q", masked)
		}
	})
}
