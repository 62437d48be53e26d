package command

// ---- write ----

// WriteCommand applies one versioned write on the primary owner
type WriteCommand struct {
	Base
	Entry
}

func NewWriteCommand(topologyID int, entry Entry) *WriteCommand {
	return &WriteCommand{Base: NewBase(topologyID), Entry: entry}
}

func (c *WriteCommand) Kind() Kind { return KindWrite }

// Perform returns whether the write was applied
func (c *WriteCommand) Perform(env *Env) (any, error) {
	return env.Container.Apply(c.Key, c.Value, c.Version)
}

// ---- backup write ----

// BackupWriteCommand is a write forwarded by the primary owner of its segment
type BackupWriteCommand struct {
	WriteCommand
	Seg int
	Seq uint64
}

func NewBackupWriteCommand(topologyID int, segment int, sequence uint64, entry Entry) *BackupWriteCommand {
	return &BackupWriteCommand{
		WriteCommand: WriteCommand{Base: NewBase(topologyID), Entry: entry},
		Seg:          segment,
		Seq:          sequence,
	}
}

func (c *BackupWriteCommand) Kind() Kind       { return KindBackupWrite }
func (c *BackupWriteCommand) Segment() int     { return c.Seg }
func (c *BackupWriteCommand) Sequence() uint64 { return c.Seq }

// ---- backup multi write ----

// BackupMultiWriteCommand is a batch forwarded by the primary owner, spanning several segments
type BackupMultiWriteCommand struct {
	Base
	Entries []Entry
	Seqs    map[int]uint64
}

func NewBackupMultiWriteCommand(topologyID int, sequences map[int]uint64, entries []Entry) *BackupMultiWriteCommand {
	return &BackupMultiWriteCommand{Base: NewBase(topologyID), Entries: entries, Seqs: sequences}
}

func (c *BackupMultiWriteCommand) Kind() Kind                { return KindBackupMultiWrite }
func (c *BackupMultiWriteCommand) Sequences() map[int]uint64 { return c.Seqs }

// Perform returns the number of applied entries
func (c *BackupMultiWriteCommand) Perform(env *Env) (any, error) {
	return applyAll(env, c.Entries)
}

// ---- state chunk ----

// StateChunkCommand is one chunk of a state transfer. Chunks are applied in
// position order.
type StateChunkCommand struct {
	Base
	Pos     uint64
	Entries []Entry
}

func NewStateChunkCommand(topologyID int, position uint64, entries []Entry) *StateChunkCommand {
	return &StateChunkCommand{Base: NewBase(topologyID), Pos: position, Entries: entries}
}

func (c *StateChunkCommand) Kind() Kind       { return KindStateChunk }
func (c *StateChunkCommand) Position() uint64 { return c.Pos }

// Perform returns the number of applied entries
func (c *StateChunkCommand) Perform(env *Env) (any, error) {
	return applyAll(env, c.Entries)
}
