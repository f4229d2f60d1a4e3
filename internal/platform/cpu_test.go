package platform

import (
	"runtime"
	"testing"
)

func TestHasMPK(t *testing.T) {
	got := HasMPK()
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		if got {
			t.Fatal("expected HasMPK to be false outside linux/amd64")
		}
	}
	t.Logf("HasMPK() = %v", got)
}
