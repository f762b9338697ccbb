package nedb

import "sync"

// recordBufPool holds scratch buffers used to frame one batch of
// persistence log records (length, checksum and msgpack payload of each)
// before it is written to the log file, avoiding an allocation per
// Insert/Update/Remove commit.
var recordBufPool = &sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 4096)
		return &buf
	},
}

func getRecordBuf() []byte {
	b := recordBufPool.Get().(*[]byte)
	return (*b)[:0]
}

func putRecordBuf(b []byte) {
	recordBufPool.Put(&b)
}
