package core

// Probe checks whether a device answers at addr: START, address with the
// write bit, STOP, then the scan settle delay.
func (b *SoftI2C) Probe(addr I2CAddress) (bool, error) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if err := b.Start(); err != nil {
		return false, b.timedOut(addr, err)
	}
	ack, err := b.Write(byte(addr) << 1)
	if err != nil {
		return false, b.timedOut(addr, err)
	}
	if err := b.Stop(); err != nil {
		return false, b.timedOut(addr, err)
	}
	b.delay.DelayMicroseconds(b.cfg.ScanSettleMicros)

	RecordBusEvent(EvtProbe, addr, 0, ack)
	return ack, nil
}

// Scan probes the configured address range in ascending order and stores
// responding addresses into found.
//
// capacity bounds both storage and the search: at most capacity addresses
// (and never more than len(found)) are stored, and scanning stops as soon
// as capacity devices have answered. found may be nil to only count.
// The returned count is the number of devices that ACKed before the scan
// ended.
func (b *SoftI2C) Scan(found []I2CAddress, capacity int) (int, error) {
	count := 0
	for addr := int(b.cfg.ScanFirst); addr <= int(b.cfg.ScanLast); addr++ {
		ack, err := b.Probe(I2CAddress(addr))
		if err != nil {
			return count, err
		}
		if !ack {
			continue
		}

		if count < capacity && count < len(found) {
			found[count] = I2CAddress(addr)
		}
		count++
		if count >= capacity {
			break
		}
	}
	return count, nil
}
