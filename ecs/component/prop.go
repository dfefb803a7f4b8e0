package component

import "image/color"

type Prop struct {
	Name  string
	Color color.Color
}

var PropComponent = NewComponent[Prop]()
