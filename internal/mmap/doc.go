// Package mmap provides read-only memory-mapped access to local artifacts.
//
// Fingerprinting reads every byte of an artifact exactly once, front to back.
// Mapping the file and advising the kernel of sequential access lets the
// hash run directly over the page cache without an intermediate buffer.
//
//	m, err := mmap.Open("backend/data/embeddings/lesson_vectors.json")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	sum := sha256.Sum256(m.Bytes())
//
// Unix uses mmap(2)/madvise(2); Windows uses CreateFileMapping/MapViewOfFile
// and treats Advise as a no-op.
package mmap
