package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MountInfo describes the filesystem a path lives on
type MountInfo struct {
	MountPoint string
	FSType     string // e.g. ext4, nfs4, cifs; empty when unknown
	Network    bool
}

// networkFSTypes are filesystem types that do not support SQLite's WAL shared memory
var networkFSTypes = []string{"nfs", "cifs", "smb", "ncpfs", "fuse.sshfs", "fuse.rclone", "9p"}

// DetectMount finds the mount holding path using /proc/mounts. On systems
// without /proc/mounts the returned info has an empty FSType.
func DetectMount(path string) (*MountInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	f, err := os.Open("/proc/mounts")
	if err != nil {
		if os.IsNotExist(err) {
			return &MountInfo{}, nil
		}
		return nil, err
	}
	defer f.Close()

	mounts, err := parseMounts(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse /proc/mounts: %w", err)
	}
	return mountFor(absPath, mounts), nil
}

// parseMounts reads mount point -> filesystem type from /proc/mounts content
func parseMounts(r io.Reader) (map[string]string, error) {
	mounts := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}
	return mounts, scanner.Err()
}

// mountFor picks the longest mount point that contains path
func mountFor(path string, mounts map[string]string) *MountInfo {
	info := &MountInfo{}
	for mountPoint, fsType := range mounts {
		if !within(path, mountPoint) || len(mountPoint) <= len(info.MountPoint) {
			continue
		}
		info.MountPoint = mountPoint
		info.FSType = fsType
	}
	info.Network = IsNetworkFSType(info.FSType)
	return info
}

func within(path, mountPoint string) bool {
	if mountPoint == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}

// IsNetworkFSType reports whether a filesystem type is network-backed
func IsNetworkFSType(fsType string) bool {
	fsType = strings.ToLower(fsType)
	for _, n := range networkFSTypes {
		if strings.HasPrefix(fsType, n) {
			return true
		}
	}
	return false
}
