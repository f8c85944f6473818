package explorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZipEntryName(t *testing.T) {
	d := &fileDomainService{}
	seen := map[string]int{}

	assert.Equal(t, "a.txt", d.ZipEntryName(seen, "a.txt"))
	assert.Equal(t, "a (1).txt", d.ZipEntryName(seen, "a.txt"))
	assert.Equal(t, "a (2).txt", d.ZipEntryName(seen, "a.txt"))
	// 已被占用的生成名不会重复
	assert.Equal(t, "a (1) (1).txt", d.ZipEntryName(seen, "a (1).txt"))
	assert.Equal(t, "passwd", d.ZipEntryName(seen, "../../etc/passwd"))
	assert.Equal(t, "x.bin", d.ZipEntryName(seen, `C:\tmp\x.bin`))
}

func TestStorageName(t *testing.T) {
	d := &fileDomainService{}
	a, b := d.StorageName("Photo.JPG"), d.StorageName("Photo.JPG")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[0-9a-f-]{36}\.jpg$`, a)
	assert.Regexp(t, `^[0-9a-f-]{36}$`, d.StorageName("noext"))
}

func TestDetectMimetype(t *testing.T) {
	d := &fileDomainService{}
	assert.Equal(t, "image/png", d.DetectMimetype("image/png", "x.bin"))
	assert.Equal(t, "application/octet-stream", d.DetectMimetype("", "x.zzzunknown"))
	assert.Equal(t, "application/pdf", d.DetectMimetype("application/octet-stream", "report.pdf"))
}
