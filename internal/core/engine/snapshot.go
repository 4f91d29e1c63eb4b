package engine

import "github.com/simforge/simforge/internal/core/entity"

// EntityView is the read-only projection of one entity handed to the
// persistence collaborator. It copies the fields worth saving; the live
// entity is never shared outside the step lock.
type EntityView struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Scene    string         `json:"scene,omitempty"`
	Position [3]float64     `json:"position"`
	Rotation [3]float64     `json:"rotation"`
	Velocity [3]float64     `json:"velocity"`
	Health   *float64       `json:"health,omitempty"`
	Items    []entity.Item  `json:"items,omitempty"`
	Ext      map[string]any `json:"ext,omitempty"`
}

// Snapshot copies every entity into views under the step lock, so the saver
// always sees a tick-consistent world.
func (e *Engine) Snapshot() []EntityView {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	all := e.store.All()
	views := make([]EntityView, 0, len(all))
	for _, ent := range all {
		v := EntityView{
			ID:       string(ent.ID),
			Kind:     string(ent.Kind),
			Scene:    ent.Scene,
			Position: [3]float64(ent.Position),
			Rotation: [3]float64(ent.Rotation),
			Velocity: [3]float64(ent.Velocity),
		}
		if ent.Combat != nil {
			h := ent.Combat.Health
			v.Health = &h
		}
		if ent.Inventory != nil && len(ent.Inventory.Items) > 0 {
			v.Items = append([]entity.Item(nil), ent.Inventory.Items...)
		}
		if len(ent.Ext) > 0 {
			v.Ext = make(map[string]any, len(ent.Ext))
			for k, val := range ent.Ext {
				v.Ext[k] = val
			}
		}
		views = append(views, v)
	}
	return views
}
