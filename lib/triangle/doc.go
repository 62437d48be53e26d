// Package triangle keeps the per segment sequence numbers of the triangle
// write path.
//
// The primary owner of a segment allocates a sequence number for every write
// it forwards to the backups (Next). A backup may only apply a forwarded write
// when its sequence number is the next one expected for the segment (IsNext),
// and marks it delivered once applied (MarkDelivered). Sequences are scoped to
// a topology and restart at 1 in every topology.
//
// Commands of an older topology than the installed one are always next, the
// topology check rejects them later. Commands of a newer topology are never
// next until that topology is installed with UpdateTopology.
package triangle
