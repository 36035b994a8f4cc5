// SPDX-License-Identifier: GPL-2.0-or-later

package sim

import (
	"netquake/edict"
	"netquake/protocol/items"
)

type pickup struct {
	model   string
	sound   string
	message string
	give    func(e *edict.Edict) bool
}

func ammo(field func(e *edict.Edict) *float32, amount, limit float32) func(e *edict.Edict) bool {
	return func(e *edict.Edict) bool {
		p := field(e)
		if *p >= limit {
			return false
		}
		*p = min(*p+amount, limit)
		if e.Weapon == int(items.Shotgun) || e.Weapon == int(items.SuperShotgun) {
			e.CurrentAmmo = e.AmmoShells
		}
		return true
	}
}

func weapon(w items.Items, shells float32) func(e *edict.Edict) bool {
	return func(e *edict.Edict) bool {
		if e.Items.Has(w) {
			return false
		}
		e.Items |= w
		e.AmmoShells = min(e.AmmoShells+shells, 100)
		e.Weapon = int(w)
		e.CurrentAmmo = e.AmmoShells
		return true
	}
}

func health(amount float32) func(e *edict.Edict) bool {
	return func(e *edict.Edict) bool {
		if e.Health >= 100 {
			return false
		}
		e.Health = min(e.Health+amount, 100)
		return true
	}
}

func armor(kind items.Items, value float32) func(e *edict.Edict) bool {
	return func(e *edict.Edict) bool {
		if e.ArmorValue >= value {
			return false
		}
		e.Items = e.Items&^(items.Armor1|items.Armor2|items.Armor3) | kind
		e.ArmorValue = value
		return true
	}
}

var pickups = map[string]*pickup{
	"item_shells": {
		model:   "maps/b_shell0.bsp",
		sound:   "weapons/lock4.wav",
		message: "You got the shells",
		give:    ammo(func(e *edict.Edict) *float32 { return &e.AmmoShells }, 20, 100),
	},
	"item_spikes": {
		model:   "maps/b_nail0.bsp",
		sound:   "weapons/lock4.wav",
		message: "You got the nails",
		give:    ammo(func(e *edict.Edict) *float32 { return &e.AmmoNails }, 25, 200),
	},
	"item_rockets": {
		model:   "maps/b_rock0.bsp",
		sound:   "weapons/lock4.wav",
		message: "You got the rockets",
		give:    ammo(func(e *edict.Edict) *float32 { return &e.AmmoRockets }, 5, 100),
	},
	"item_cells": {
		model:   "maps/b_batt0.bsp",
		sound:   "weapons/lock4.wav",
		message: "You got the cells",
		give:    ammo(func(e *edict.Edict) *float32 { return &e.AmmoCells }, 6, 100),
	},
	"item_health": {
		model:   "maps/b_bh25.bsp",
		sound:   "items/health1.wav",
		message: "You receive 25 health",
		give:    health(25),
	},
	"item_armor1": {
		model:   "progs/armor.mdl",
		sound:   "items/armor1.wav",
		message: "You got armor",
		give:    armor(items.Armor1, 100),
	},
	"weapon_supershotgun": {
		model:   "progs/g_shot.mdl",
		sound:   "weapons/pkup.wav",
		message: "You got the Double-barrelled Shotgun",
		give:    weapon(items.SuperShotgun, 5),
	},
}
