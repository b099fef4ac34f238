// Package transfer implements chunked binary payload transfer: splitting
// large payloads into bounded pieces on the sending side and reassembling
// them on the receiving side with CRC32 integrity verification.
//
// A transfer is a header piece announcing the total size, chunk count and
// expected checksum, followed by indexed data pieces, followed by a footer
// piece restating the header fields. Chunks may arrive out of order and
// may be duplicated; reassembly is driven purely by chunk index. A
// payload is delivered only when every chunk has arrived and the CRC32 of
// the reassembled bytes matches the announced checksum. A corrupt or
// incomplete transfer is never delivered.
//
// The Manager bounds its memory two ways: incomplete transfers expire
// after a TTL, and the number of in-flight transfers is capped with
// oldest-first eviction. Both are accounted as transfer failures.
package transfer
