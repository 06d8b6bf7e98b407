package main

import "github.com/charmbracelet/harmonica"

// camera eases the drawn origin toward the observer with a critically damped
// spring per axis, so arrow-key jumps scroll instead of snapping.
type camera struct {
	spring harmonica.Spring
	pos    [2]float64
	vel    [2]float64
}

func newCamera(fps int, frequency, damping float64) *camera {
	return &camera{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (c *camera) step(target [2]float64) [2]float64 {
	for i := range c.pos {
		c.pos[i], c.vel[i] = c.spring.Update(c.pos[i], c.vel[i], target[i])
	}
	return c.pos
}
