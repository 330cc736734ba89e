package route

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// RouterLoader mounts a plugin's routes on the gin engine.
type RouterLoader func(r *gin.Engine) error

// RouteType distinguishes which listener a plugin's routes belong to.
type RouteType int

const (
	// RouteTypeMain registers routes on the main API listener.
	RouteTypeMain RouteType = iota
	// RouteTypeManagement registers routes on the management listener
	// (health, readiness, metrics). Without a dedicated management port
	// they are mounted on the main listener instead.
	RouteTypeManagement
)

// Plugin is a route plugin; Order fixes the mount sequence.
type Plugin struct {
	Order  int
	Type   RouteType
	Loader RouterLoader
}

var (
	plugins  []Plugin
	sortOnce sync.Once
)

// Register adds a route plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

func loadersOf(t RouteType) []RouterLoader {
	sortOnce.Do(func() {
		sort.SliceStable(plugins, func(i, j int) bool { return plugins[i].Order < plugins[j].Order })
	})
	var loaders []RouterLoader
	for _, p := range plugins {
		if p.Type == t {
			loaders = append(loaders, p.Loader)
		}
	}
	return loaders
}

// MainRouteLoaders returns loaders for RouteTypeMain plugins in mount order.
func MainRouteLoaders() []RouterLoader {
	return loadersOf(RouteTypeMain)
}

// ManagementRouteLoaders returns loaders for RouteTypeManagement plugins in mount order.
func ManagementRouteLoaders() []RouterLoader {
	return loadersOf(RouteTypeManagement)
}
