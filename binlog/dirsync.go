package binlog

import (
	"os"

	"github.com/coreos/etcd/pkg/fileutil"
)

// syncDir fsyncs the directory entry for dir itself, not its contents. A
// crash between creating a new segment file and the next metadata-store
// commit can otherwise leave the filesystem's directory entry for that file
// unflushed, which is exactly the gap the teacher's own go.mod dependency on
// coreos/etcd exists to close (see DESIGN.md) -- the teacher's wal.go
// comments on this exact risk ("the FS could lose the dir entry for the new
// file") without the retrieved files showing the fix.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return fileutil.Fsync(f)
}
