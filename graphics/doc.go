// Package graphics holds the presentation resources a component works
// with: frame buffers it draws into, graphics contexts that bind a frame
// buffer to a surface, and surfaces wrapping native windows.
package graphics
