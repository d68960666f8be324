package backend

// PathKeeper collects remote object paths into chunks of maximum size.
// Each backend defines its own chunk limit (for S3 it is the DeleteObjects
// request cap, for Consul the transaction op cap) and consumes the
// accumulated chunks during RemoveFromRemote.
type PathKeeper struct {
	chunkLimit int
	chunks     [][]string
}

// NewPathKeeper creates a keeper whose chunks never exceed chunkLimit paths.
// A chunkLimit below 1 is treated as 1.
func NewPathKeeper(chunkLimit int) *PathKeeper {
	if chunkLimit < 1 {
		chunkLimit = 1
	}

	return &PathKeeper{
		chunkLimit: chunkLimit,
	}
}

// AddPath appends a remote object path to the accumulation, opening a new
// chunk once the current one reaches the chunk limit.
func (pk *PathKeeper) AddPath(path string) {
	last := len(pk.chunks) - 1
	if last < 0 || len(pk.chunks[last]) >= pk.chunkLimit {
		pk.chunks = append(pk.chunks, make([]string, 0, pk.chunkLimit))
		last++
	}

	pk.chunks[last] = append(pk.chunks[last], path)
}

// Chunks returns the accumulated paths grouped by chunk limit, in
// insertion order.
func (pk *PathKeeper) Chunks() [][]string {
	return pk.chunks
}

// Len returns the total number of accumulated paths.
func (pk *PathKeeper) Len() int {
	total := 0
	for _, chunk := range pk.chunks {
		total += len(chunk)
	}

	return total
}

// Empty reports whether no paths have been accumulated.
func (pk *PathKeeper) Empty() bool {
	return len(pk.chunks) == 0
}
