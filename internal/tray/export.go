package tray

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/nikicat/toggler/internal/sni"
)

// itemMethods is exported as org.kde.StatusNotifierItem. The coordinates
// are a positional hint from the shell and are not used.
type itemMethods struct {
	loop *Loop
}

// Activate toggles the switch.
func (m itemMethods) Activate(x, y int32) *dbus.Error {
	return m.loop.call(request{kind: reqActivate}).err
}

// SecondaryActivate quits the item, usually a middle click.
func (m itemMethods) SecondaryActivate(x, y int32) *dbus.Error {
	return m.loop.call(request{kind: reqSecondaryActivate}).err
}

// itemProperties is exported as org.freedesktop.DBus.Properties. Reads go
// through the loop so they always see a consistent state.
type itemProperties struct {
	loop *Loop
}

func (p itemProperties) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	resp := p.loop.call(request{kind: reqGetProperty, iface: iface, name: property})
	return resp.value, resp.err
}

func (p itemProperties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	resp := p.loop.call(request{kind: reqGetAllProperties, iface: iface})
	return resp.values, resp.err
}

func (p itemProperties) Set(iface, property string, value dbus.Variant) *dbus.Error {
	if iface != sni.ItemInterface {
		return sni.ErrInterfaceNotFound(iface)
	}
	return sni.ErrReadOnly(property)
}

var itemPropertyTypes = []struct{ name, sig string }{
	{"Category", "s"},
	{"Id", "s"},
	{"Title", "s"},
	{"Status", "s"},
	{"WindowId", "u"},
	{"IconName", "s"},
	{"ItemIsMenu", "b"},
}

func introspectNode() *introspect.Node {
	props := make([]introspect.Property, 0, len(itemPropertyTypes))
	for _, p := range itemPropertyTypes {
		props = append(props, introspect.Property{Name: p.name, Type: p.sig, Access: "read"})
	}

	return &introspect.Node{
		Name: string(sni.ItemPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       sni.ItemInterface,
				Methods:    introspect.Methods(itemMethods{}),
				Signals:    []introspect.Signal{{Name: "NewIcon"}, {Name: "NewStatus"}},
				Properties: props,
			},
		},
	}
}

// export publishes the item object on conn.
func export(conn *dbus.Conn, loop *Loop) error {
	if err := conn.Export(itemMethods{loop}, sni.ItemPath, sni.ItemInterface); err != nil {
		return fmt.Errorf("export %s: %w", sni.ItemInterface, err)
	}
	if err := conn.Export(itemProperties{loop}, sni.ItemPath, sni.PropertiesInterface); err != nil {
		return fmt.Errorf("export Properties: %w", err)
	}
	if err := conn.Export(introspect.NewIntrospectable(introspectNode()), sni.ItemPath, sni.IntrospectableInterface); err != nil {
		return fmt.Errorf("export Introspectable: %w", err)
	}
	return nil
}
