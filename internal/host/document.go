package host

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrLayerExists    = errors.New("host: layer already exists")
	ErrLayerNotFound  = errors.New("host: layer not found")
	ErrObjectNotFound = errors.New("host: object not found")
	ErrInvalidName    = errors.New("host: invalid name")
)

// Version identifies the simulated modeler host.
const Version = "modelbridge host 0.1.0"

// Layer is one document layer.
type Layer struct {
	ID      string
	Name    string
	Color   [3]uint8
	Visible bool
	Locked  bool
}

// Object is one scene object. Min/Max is the axis-aligned bounding box.
type Object struct {
	ID       string
	Name     string
	Type     string
	Layer    string
	Visible  bool
	Metadata map[string]string
	Min      [3]float64
	Max      [3]float64
}

// Document holds all mutable host state. It is not safe for concurrent
// use; every mutation happens on the run loop turn.
type Document struct {
	Path  string
	Units string

	layers       []Layer
	currentLayer int
	objects      map[string]*Object
	order        []string
}

// NewDocument creates a document with the default layer seeded, matching
// a fresh host session.
func NewDocument() *Document {
	return &Document{
		Units: "millimeters",
		layers: []Layer{{
			ID:      uuid.NewString(),
			Name:    "Default",
			Color:   [3]uint8{0, 0, 0},
			Visible: true,
		}},
		objects: make(map[string]*Object),
	}
}

// Layers returns the layer table in creation order.
func (d *Document) Layers() []Layer {
	out := make([]Layer, len(d.layers))
	copy(out, d.layers)
	return out
}

// CurrentLayer returns the active layer.
func (d *Document) CurrentLayer() Layer {
	return d.layers[d.currentLayer]
}

// LayerByName resolves a layer by exact name.
func (d *Document) LayerByName(name string) (Layer, bool) {
	for _, layer := range d.layers {
		if layer.Name == name {
			return layer, true
		}
	}
	return Layer{}, false
}

// AddLayer appends a new visible layer and returns it.
func (d *Document) AddLayer(name string, color [3]uint8) (Layer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Layer{}, fmt.Errorf("%w: empty layer name", ErrInvalidName)
	}
	if _, ok := d.LayerByName(name); ok {
		return Layer{}, fmt.Errorf("%w: %s", ErrLayerExists, name)
	}
	layer := Layer{
		ID:      uuid.NewString(),
		Name:    name,
		Color:   color,
		Visible: true,
	}
	d.layers = append(d.layers, layer)
	return layer, nil
}

// SetCurrentLayer switches the active layer by name.
func (d *Document) SetCurrentLayer(name string) error {
	for i, layer := range d.layers {
		if layer.Name == name {
			d.currentLayer = i
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLayerNotFound, name)
}

// AddBox creates an axis-aligned box object on the given layer. An empty
// layer name targets the current layer.
func (d *Document) AddBox(name, layer string, location [3]float64, size float64) (*Object, error) {
	if size <= 0 {
		return nil, errors.New("size must be positive")
	}
	layerName := strings.TrimSpace(layer)
	if layerName == "" {
		layerName = d.CurrentLayer().Name
	} else if _, ok := d.LayerByName(layerName); !ok {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, layerName)
	}
	if strings.TrimSpace(name) == "" {
		name = "Box"
	}
	obj := &Object{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     "box",
		Layer:    layerName,
		Visible:  true,
		Metadata: make(map[string]string),
		Min:      location,
		Max:      [3]float64{location[0] + size, location[1] + size, location[2] + size},
	}
	d.objects[obj.ID] = obj
	d.order = append(d.order, obj.ID)
	return obj, nil
}

// Objects returns scene objects in creation order.
func (d *Document) Objects() []*Object {
	out := make([]*Object, 0, len(d.order))
	for _, id := range d.order {
		if obj, ok := d.objects[id]; ok {
			out = append(out, obj)
		}
	}
	return out
}

// FindObject resolves an object by id.
func (d *Document) FindObject(id string) (*Object, bool) {
	obj, ok := d.objects[id]
	return obj, ok
}

// DeleteObject removes an object by id.
func (d *Document) DeleteObject(id string) error {
	if _, ok := d.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	delete(d.objects, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetObjectMetadata merges metadata keys onto an object.
func (d *Document) SetObjectMetadata(id string, meta map[string]string) error {
	obj, ok := d.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	if obj.Metadata == nil {
		obj.Metadata = make(map[string]string, len(meta))
	}
	for k, v := range meta {
		obj.Metadata[k] = v
	}
	return nil
}
