// Package resource defines the wire format for content archived by the
// archive package. It mirrors the teacher's proto/resource.Resource message
// (content bytes, content-type, redirect target), hand-written in the
// legacy protoc-gen-go struct-tag style since no .proto/.pb.go for it was
// retrievable — see DESIGN.md for why. Resource implements only the v1
// Message interface (Reset/String/ProtoMessage), not protoreflect's
// ProtoReflect(), so it is marshaled through github.com/golang/protobuf/proto,
// which still accepts v1-shaped messages and adapts them onto the
// google.golang.org/protobuf runtime internally.
package resource

import "github.com/golang/protobuf/proto"

// Resource is a single fetched URL's archived payload: either a body with a
// content type, or a redirect target.
type Resource struct {
	ContentType string `protobuf:"bytes,1,opt,name=content_type,json=contentType,proto3" json:"content_type,omitempty"`
	Content     []byte `protobuf:"bytes,2,opt,name=content,proto3" json:"content,omitempty"`
	Redirect    string `protobuf:"bytes,3,opt,name=redirect,proto3" json:"redirect,omitempty"`
}

func (m *Resource) Reset()         { *m = Resource{} }
func (m *Resource) String() string { return proto.CompactTextString(m) }
func (*Resource) ProtoMessage()    {}

// Marshal serializes r using the protobuf wire format.
func Marshal(r *Resource) ([]byte, error) {
	return proto.Marshal(r)
}

// Unmarshal parses protobuf wire-format bytes into a Resource.
func Unmarshal(b []byte) (*Resource, error) {
	r := &Resource{}
	if err := proto.Unmarshal(b, r); err != nil {
		return nil, err
	}
	return r, nil
}
