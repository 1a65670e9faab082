package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the domain types persisted in storage.
// Field order is part of the stored format; append new fields at the end.

// ChunkMUS serializes Chunk values.
var ChunkMUS = chunkMUS{}

// MentionMUS serializes Mention values.
var MentionMUS = mentionMUS{}

// EntityMUS serializes Entity values.
var EntityMUS = entityMUS{}

// RelationshipMUS serializes Relationship values.
var RelationshipMUS = relationshipMUS{}

// DocumentMUS serializes Document values.
var DocumentMUS = documentMUS{}

// -- primitive helpers -------------------------------------------------------

func marshalTime(t time.Time, bs []byte) int {
	var us int64
	if !t.IsZero() {
		us = t.UnixMicro()
	}
	return varint.Int64.Marshal(us, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if us == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var us int64
	if !t.IsZero() {
		us = t.UnixMicro()
	}
	return varint.Int64.Size(us)
}

func marshalFloat32Slice(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	return
}

func unmarshalFloat32Slice(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length <= 0 {
		return nil, n, err
	}
	v = make([]float32, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = varint.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return
}

func sizeFloat32Slice(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Float32.Size(f)
	}
	return
}

func marshalStringSlice(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return
}

func unmarshalStringSlice(bs []byte) (v []string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length <= 0 {
		return nil, n, err
	}
	v = make([]string, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return
}

func sizeStringSlice(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return
}

func marshalStringMap(v map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for k, val := range v {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(val, bs[n:])
	}
	return
}

func unmarshalStringMap(bs []byte) (v map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length <= 0 {
		return nil, n, err
	}
	v = make(map[string]string, length)
	var n1 int
	for i := 0; i < length; i++ {
		var k, val string
		k, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		val, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v[k] = val
	}
	return
}

func sizeStringMap(v map[string]string) (size int) {
	size = varint.Int.Size(len(v))
	for k, val := range v {
		size += ord.String.Size(k)
		size += ord.String.Size(val)
	}
	return
}

// -- Chunk -------------------------------------------------------------------

type chunkMUS struct{}

func (chunkMUS) Marshal(c Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.Id, bs)
	n += ord.String.Marshal(c.Content, bs[n:])
	n += ord.String.Marshal(string(c.Type), bs[n:])
	n += varint.Int.Marshal(c.Level, bs[n:])
	n += marshalFloat32Slice(c.Embedding, bs[n:])
	n += varint.Float64.Marshal(c.SemanticScore, bs[n:])
	n += varint.Int.Marshal(c.StartIndex, bs[n:])
	n += varint.Int.Marshal(c.EndIndex, bs[n:])
	n += marshalStringSlice(c.Keywords, bs[n:])
	n += ord.String.Marshal(c.ParentChunkId, bs[n:])
	return
}

func (chunkMUS) Unmarshal(bs []byte) (c Chunk, n int, err error) {
	var n1 int
	if c.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if c.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	var typ string
	if typ, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	c.Type = ChunkType(typ)
	if c.Level, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Embedding, n1, err = unmarshalFloat32Slice(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.SemanticScore, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.StartIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.EndIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.Keywords, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	if c.ParentChunkId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + n1, err
	}
	n += n1
	return
}

func (chunkMUS) Size(c Chunk) (size int) {
	size = ord.String.Size(c.Id)
	size += ord.String.Size(c.Content)
	size += ord.String.Size(string(c.Type))
	size += varint.Int.Size(c.Level)
	size += sizeFloat32Slice(c.Embedding)
	size += varint.Float64.Size(c.SemanticScore)
	size += varint.Int.Size(c.StartIndex)
	size += varint.Int.Size(c.EndIndex)
	size += sizeStringSlice(c.Keywords)
	size += ord.String.Size(c.ParentChunkId)
	return
}

// -- Mention -----------------------------------------------------------------

type mentionMUS struct{}

func (mentionMUS) Marshal(m Mention, bs []byte) (n int) {
	n = ord.String.Marshal(m.ChunkId, bs)
	n += varint.Int.Marshal(m.Position, bs[n:])
	n += ord.String.Marshal(m.Context, bs[n:])
	n += varint.Float64.Marshal(m.Confidence, bs[n:])
	return
}

func (mentionMUS) Unmarshal(bs []byte) (m Mention, n int, err error) {
	var n1 int
	if m.ChunkId, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if m.Position, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	if m.Context, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	if m.Confidence, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return m, n + n1, err
	}
	n += n1
	return
}

func (mentionMUS) Size(m Mention) (size int) {
	size = ord.String.Size(m.ChunkId)
	size += varint.Int.Size(m.Position)
	size += ord.String.Size(m.Context)
	size += varint.Float64.Size(m.Confidence)
	return
}

// -- Entity ------------------------------------------------------------------

type entityMUS struct{}

func (entityMUS) Marshal(e Entity, bs []byte) (n int) {
	n = ord.String.Marshal(e.Id, bs)
	n += ord.String.Marshal(e.Name, bs[n:])
	n += ord.String.Marshal(string(e.Type), bs[n:])
	n += ord.String.Marshal(e.Description, bs[n:])
	n += varint.Float64.Marshal(e.Confidence, bs[n:])
	n += marshalStringSlice(e.Aliases, bs[n:])
	n += marshalStringMap(e.Attributes, bs[n:])
	n += varint.Int.Marshal(len(e.Mentions), bs[n:])
	for _, m := range e.Mentions {
		n += MentionMUS.Marshal(m, bs[n:])
	}
	n += varint.Int.Marshal(len(e.Relationships), bs[n:])
	for _, r := range e.Relationships {
		n += ord.String.Marshal(r.TargetEntityId, bs[n:])
		n += ord.String.Marshal(r.RelationshipType, bs[n:])
		n += varint.Float64.Marshal(r.Confidence, bs[n:])
	}
	return
}

func (entityMUS) Unmarshal(bs []byte) (e Entity, n int, err error) {
	var n1 int
	if e.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if e.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	var typ string
	if typ, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	e.Type = EntityType(typ)
	if e.Description, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Confidence, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Aliases, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if e.Attributes, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	var count int
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if count > 0 {
		e.Mentions = make([]Mention, count)
		for i := 0; i < count; i++ {
			if e.Mentions[i], n1, err = MentionMUS.Unmarshal(bs[n:]); err != nil {
				return e, n + n1, err
			}
			n += n1
		}
	}
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return e, n + n1, err
	}
	n += n1
	if count > 0 {
		e.Relationships = make([]EntityRelationship, count)
		for i := 0; i < count; i++ {
			var r EntityRelationship
			if r.TargetEntityId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return e, n + n1, err
			}
			n += n1
			if r.RelationshipType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return e, n + n1, err
			}
			n += n1
			if r.Confidence, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
				return e, n + n1, err
			}
			n += n1
			e.Relationships[i] = r
		}
	}
	return
}

func (entityMUS) Size(e Entity) (size int) {
	size = ord.String.Size(e.Id)
	size += ord.String.Size(e.Name)
	size += ord.String.Size(string(e.Type))
	size += ord.String.Size(e.Description)
	size += varint.Float64.Size(e.Confidence)
	size += sizeStringSlice(e.Aliases)
	size += sizeStringMap(e.Attributes)
	size += varint.Int.Size(len(e.Mentions))
	for _, m := range e.Mentions {
		size += MentionMUS.Size(m)
	}
	size += varint.Int.Size(len(e.Relationships))
	for _, r := range e.Relationships {
		size += ord.String.Size(r.TargetEntityId)
		size += ord.String.Size(r.RelationshipType)
		size += varint.Float64.Size(r.Confidence)
	}
	return
}

// -- Relationship ------------------------------------------------------------

type relationshipMUS struct{}

func (relationshipMUS) Marshal(r Relationship, bs []byte) (n int) {
	n = ord.String.Marshal(r.Id, bs)
	n += ord.String.Marshal(r.SourceEntityId, bs[n:])
	n += ord.String.Marshal(r.TargetEntityId, bs[n:])
	n += ord.String.Marshal(r.RelationshipType, bs[n:])
	n += ord.String.Marshal(r.Description, bs[n:])
	n += varint.Float64.Marshal(r.Confidence, bs[n:])
	n += marshalStringSlice(r.Evidence, bs[n:])
	return
}

func (relationshipMUS) Unmarshal(bs []byte) (r Relationship, n int, err error) {
	var n1 int
	if r.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if r.SourceEntityId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.TargetEntityId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.RelationshipType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.Description, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.Confidence, n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	if r.Evidence, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return r, n + n1, err
	}
	n += n1
	return
}

func (relationshipMUS) Size(r Relationship) (size int) {
	size = ord.String.Size(r.Id)
	size += ord.String.Size(r.SourceEntityId)
	size += ord.String.Size(r.TargetEntityId)
	size += ord.String.Size(r.RelationshipType)
	size += ord.String.Size(r.Description)
	size += varint.Float64.Size(r.Confidence)
	size += sizeStringSlice(r.Evidence)
	return
}

// -- Document ----------------------------------------------------------------

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = ord.String.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.OwnerId, bs[n:])
	n += ord.String.Marshal(d.Title, bs[n:])
	n += ord.String.Marshal(d.DocumentType, bs[n:])
	n += ord.String.Marshal(d.Content, bs[n:])
	n += ord.String.Marshal(d.SourcePath, bs[n:])
	n += marshalStringSlice(d.Tags, bs[n:])
	n += varint.Int.Marshal(len(d.Chunks), bs[n:])
	for _, c := range d.Chunks {
		n += ChunkMUS.Marshal(c, bs[n:])
	}
	n += marshalFloat32Slice(d.Embeddings.Text, bs[n:])
	n += varint.Int.Marshal(len(d.GraphNodes), bs[n:])
	for _, e := range d.GraphNodes {
		n += EntityMUS.Marshal(*e, bs[n:])
	}
	n += varint.Int.Marshal(len(d.GraphEdges), bs[n:])
	for _, r := range d.GraphEdges {
		n += RelationshipMUS.Marshal(*r, bs[n:])
	}
	n += ord.String.Marshal(string(d.Status), bs[n:])
	n += marshalStringSlice(d.ProcessingErrors, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	n += marshalTime(d.LastProcessedAt, bs[n:])
	return
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.OwnerId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.DocumentType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.SourcePath, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Tags, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	var count int
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if count > 0 {
		d.Chunks = make([]Chunk, count)
		for i := 0; i < count; i++ {
			if d.Chunks[i], n1, err = ChunkMUS.Unmarshal(bs[n:]); err != nil {
				return d, n + n1, err
			}
			n += n1
		}
	}
	if d.Embeddings.Text, n1, err = unmarshalFloat32Slice(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if count > 0 {
		d.GraphNodes = make([]*Entity, count)
		for i := 0; i < count; i++ {
			var e Entity
			if e, n1, err = EntityMUS.Unmarshal(bs[n:]); err != nil {
				return d, n + n1, err
			}
			n += n1
			d.GraphNodes[i] = &e
		}
	}
	if count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if count > 0 {
		d.GraphEdges = make([]*Relationship, count)
		for i := 0; i < count; i++ {
			var r Relationship
			if r, n1, err = RelationshipMUS.Unmarshal(bs[n:]); err != nil {
				return d, n + n1, err
			}
			n += n1
			d.GraphEdges[i] = &r
		}
	}
	var status string
	if status, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	d.Status = ProcessingStatus(status)
	if d.ProcessingErrors, n1, err = unmarshalStringSlice(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.LastProcessedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return
}

func (documentMUS) Size(d Document) (size int) {
	size = ord.String.Size(d.Id)
	size += ord.String.Size(d.OwnerId)
	size += ord.String.Size(d.Title)
	size += ord.String.Size(d.DocumentType)
	size += ord.String.Size(d.Content)
	size += ord.String.Size(d.SourcePath)
	size += sizeStringSlice(d.Tags)
	size += varint.Int.Size(len(d.Chunks))
	for _, c := range d.Chunks {
		size += ChunkMUS.Size(c)
	}
	size += sizeFloat32Slice(d.Embeddings.Text)
	size += varint.Int.Size(len(d.GraphNodes))
	for _, e := range d.GraphNodes {
		size += EntityMUS.Size(*e)
	}
	size += varint.Int.Size(len(d.GraphEdges))
	for _, r := range d.GraphEdges {
		size += RelationshipMUS.Size(*r)
	}
	size += ord.String.Size(string(d.Status))
	size += sizeStringSlice(d.ProcessingErrors)
	size += sizeTime(d.CreatedAt)
	size += sizeTime(d.UpdatedAt)
	size += sizeTime(d.LastProcessedAt)
	return
}
