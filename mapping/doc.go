// Package mapping binds recognized gestures to mixer controls.
//
// A Mapping associates one gesture, on one hand or either, with a
// control target: a channel-scoped control such as volume or EQ, or a
// global one such as the crossfader. Continuous mappings stream the
// gesture's derived value through a deadzone/sensitivity transform;
// toggle and trigger mappings fire on the rising edge of the gesture's
// presence, with toggles flipping a held state and triggers re-arming
// once the gesture releases.
//
// The Mapper dispatches each frame's recognition results against the
// current mapping table. The table is replaced wholesale on every edit,
// so dispatch always sees a consistent snapshot. When a gesture
// disappears mid-frame its continuous control simply holds the last
// applied value.
package mapping
