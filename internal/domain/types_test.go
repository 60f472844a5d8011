package domain

import "testing"

func TestEntryType_String(t *testing.T) {
	tests := []struct {
		ftype EntryType
		want  string
	}{
		{EntryFile, "regular file"},
		{EntryDirectory, "directory"},
		{EntrySymlink, "symbolic link"},
		{EntryFifo, "fifo"},
		{EntryCharDev, "character device file"},
		{EntryBlockDev, "block device file"},
		{EntryUnknown, "(unknown file type)"},
	}

	for _, tt := range tests {
		if got := tt.ftype.String(); got != tt.want {
			t.Errorf("EntryType(%d).String() = %q, want %q", tt.ftype, got, tt.want)
		}
	}
}

func TestTerseCodes(t *testing.T) {
	codes := map[TerseCode]string{
		TerseNew:     "new",
		TerseDelete:  "delete",
		TerseMkdir:   "mkdir",
		TerseSync:    "sync",
		TerseOwner:   "owner",
		TerseMode:    "mode",
		TerseLink:    "link",
		TerseWarning: "warning",
		TerseFail:    "fail",
	}

	for code, want := range codes {
		if string(code) != want {
			t.Errorf("terse code %q, want %q", code, want)
		}
	}
}
