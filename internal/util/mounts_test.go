package util

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procMounts = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda1 / ext4 rw,relatime 0 0
nas:/export/music /mnt/nas nfs4 rw,relatime,vers=4.2 0 0
//server/share /mnt/share cifs rw,relatime 0 0
/dev/sdb1 /mnt/nas-local ext4 rw 0 0
garbage
`

func TestParseMounts(t *testing.T) {
	mounts, err := parseMounts(strings.NewReader(procMounts))
	require.NoError(t, err)

	assert.Len(t, mounts, 5)
	assert.Equal(t, "ext4", mounts["/"])
	assert.Equal(t, "nfs4", mounts["/mnt/nas"])
}

func TestMountForPicksLongestContainingMount(t *testing.T) {
	mounts, err := parseMounts(strings.NewReader(procMounts))
	require.NoError(t, err)

	tests := []struct {
		path       string
		mountPoint string
		network    bool
	}{
		{"/home/student/sparkify.db", "/", false},
		{"/mnt/nas/sparkify.db", "/mnt/nas", true},
		{"/mnt/nas", "/mnt/nas", true},
		{"/mnt/nas-local/sparkify.db", "/mnt/nas-local", false},
		{"/mnt/share/db/sparkify.db", "/mnt/share", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			info := mountFor(tt.path, mounts)
			assert.Equal(t, tt.mountPoint, info.MountPoint)
			assert.Equal(t, tt.network, info.Network)
		})
	}
}

func TestIsNetworkFSType(t *testing.T) {
	for _, fs := range []string{"nfs", "nfs4", "cifs", "smb3", "fuse.sshfs", "NFS"} {
		assert.True(t, IsNetworkFSType(fs), fs)
	}
	for _, fs := range []string{"", "ext4", "xfs", "tmpfs", "overlay", "apfs"} {
		assert.False(t, IsNetworkFSType(fs), fs)
	}
}

func TestDetectMountTempDir(t *testing.T) {
	info, err := DetectMount(t.TempDir())
	require.NoError(t, err)

	if runtime.GOOS == "linux" {
		assert.NotEmpty(t, info.MountPoint)
		assert.NotEmpty(t, info.FSType)
	}
}
