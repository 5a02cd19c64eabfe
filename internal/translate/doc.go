// Package translate turns a JSON-Schema tool definition discovered on a
// child MCP server into a typed invocable on the aggregator side: a
// parameter descriptor set the registration surface can present, plus an
// executor closure that routes the call back to the owning session.
//
// The type mapping is a closed set; unions with null become optional
// parameters, any other union collapses to its first non-null member with
// a logged warning. Property names are sanitized for the registration
// surface while the original spelling is used when marshalling outgoing
// call arguments.
package translate
