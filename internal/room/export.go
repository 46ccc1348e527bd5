package room

import (
	"go.uber.org/zap"

	"fitroom/internal/looks"
	"fitroom/internal/merge"
)

// LookSaver persists an exported look.
type LookSaver interface {
	Save(name string, glb []byte, meta looks.Meta) (looks.Look, error)
}

// ExportLook encodes the merged object as GLB and saves it under name.
func (r *Room) ExportLook(saver LookSaver, name, owner string) (looks.Look, error) {
	var (
		glb  []byte
		meta looks.Meta
	)
	err := r.act("exportLook", "Export failed", func() error {
		c := r.merge.Combined()
		if c == nil {
			return &merge.Error{Reason: merge.ReasonNotMerged}
		}
		var err error
		if glb, err = looks.EncodeGLB(c.Node); err != nil {
			return err
		}
		meta = looks.Meta{Owner: owner, Vertices: c.Vertices, Triangles: c.Triangles}
		return nil
	})
	if err != nil {
		return looks.Look{}, err
	}

	look, err := saver.Save(name, glb, meta)
	if err != nil {
		r.logger.Warn("save look failed", zap.Error(err))
		r.notify(LevelError, "Export failed", describe(err))
		return looks.Look{}, err
	}
	r.notify(LevelSuccess, "Look saved", look.Name)
	return look, nil
}
