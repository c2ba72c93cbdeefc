// Package fact defines the knowledge-record data model shared by every
// storage backend and the ingestion pipeline.
//
// A Key is the (ecosystem, tool, version) triple identifying one record;
// its canonical encoding "fact:<ecosystem>:<tool>:<version>" doubles as the
// on-disk identifier. A Record is the structured knowledge payload: free
// documentation plus typed collections of snippets, examples, best
// practices, troubleshooting entries and source references.
//
// Two codecs are provided:
//
//   - EncodeBinary/DecodeBinary: compact msgpack form embedded in backend
//     values
//   - EncodeJSON/DecodeJSON: readable form for import/export and the file
//     backend's JSON mode
//
// Both satisfy decode(encode(r)) == r for every well-formed record,
// including empty collections and arbitrary Unicode content.
package fact
